// Package loader triggers controller registration via blank imports.
// Import this package to ensure all controllers are registered with the registry.
package loader

import (
	// Import controllers here to trigger their init() registration.
	_ "github.com/MahdiBaghbani/sessionkit/internal/controllers/accounts"
	_ "github.com/MahdiBaghbani/sessionkit/internal/controllers/integration"
)
