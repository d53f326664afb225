// Package loader registers every transcript driver via blank imports.
package loader

import (
	_ "github.com/MahdiBaghbani/sessionkit/internal/store/json"
	_ "github.com/MahdiBaghbani/sessionkit/internal/store/memory"
	_ "github.com/MahdiBaghbani/sessionkit/internal/store/mirror"
	_ "github.com/MahdiBaghbani/sessionkit/internal/store/sqlite"
)
