// Package all imports all available collectors for side-effect registration.
//
// Import this package from your main to ensure all collectors are registered:
//
//	import _ "github.com/Vodeneev/evledger/internal/collector/all"
package all

import (
	_ "github.com/Vodeneev/evledger/internal/collector/feed"
)
