// Package spresso is a client for recording behavioral analytics events
// and delivering them in batches to a Spresso collector.
//
//	client, err := spresso.Configure(spresso.EnvironmentProd, time.Minute)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Dispose()
//
//	client.Identify("user-123")
//	client.Track(spresso.EventTypeViewPage, map[string]any{"path": "/home"})
package spresso

import (
	"github.com/spresso/spresso-go/adapters"
)

// Version is the SDK version reported with every request.
const Version = "1.4.0"

// Re-export adapter types for convenience
type (
	Event          = adapters.Event
	Identity       = adapters.Identity
	Platform       = adapters.Platform
	HTTPAdapter    = adapters.HTTPAdapter
	HTTPResponse   = adapters.HTTPResponse
	StorageAdapter = adapters.StorageAdapter
	LoggerAdapter  = adapters.LoggerAdapter
	LogLevel       = adapters.LogLevel
)

// Standard commerce event names.
const (
	EventTypeCreateOrder     = "spresso_create_order"
	EventTypeGlimpseProduct  = "spresso_glimpse_product"
	EventTypeViewPage        = "spresso_view_page"
	EventTypePurchaseVariant = "spresso_purchase_variant"
	EventTypeAddToCart       = "spresso_add_to_cart"
	EventTypeViewProduct     = "spresso_view_product"
)

// Events recorded by the client itself.
const (
	EventTypeSessionStart = "spresso_session_start"
	EventTypeSessionEnd   = "spresso_session_end"
	EventTypeCreateAlias  = "spresso_create_alias"
)

// maxNameLength bounds event names, aliases and metadata keys.
const maxNameLength = 255
