package httpapi

import (
	_ "embed"
	"time"
)

//go:embed assets/suspended.html
var suspendedPage []byte

// pageModTime stands in for the modification time of embedded pages.
var pageModTime = time.Now()
