package enums

import "fmt"

// SyncEntity names a catalog dataset mirrored from the remote gateway.
type SyncEntity string

const (
	SyncEntityProducts   SyncEntity = "products"
	SyncEntityCategories SyncEntity = "categories"
	SyncEntityCustomers  SyncEntity = "customers"
)

// SyncEntities lists every pulled dataset in pull order.
var SyncEntities = []SyncEntity{
	SyncEntityProducts,
	SyncEntityCategories,
	SyncEntityCustomers,
}

// IsValid reports whether the value is a known dataset.
func (e SyncEntity) IsValid() bool {
	for _, candidate := range SyncEntities {
		if candidate == e {
			return true
		}
	}
	return false
}

func (e SyncEntity) String() string {
	return string(e)
}

// WatermarkKey is the sync_state key recording the entity's last successful pull.
func (e SyncEntity) WatermarkKey() string {
	switch e {
	case SyncEntityProducts:
		return "last_product_sync"
	case SyncEntityCategories:
		return "last_category_sync"
	case SyncEntityCustomers:
		return "last_customer_sync"
	default:
		return ""
	}
}

// ParseSyncEntity converts raw input into SyncEntity.
func ParseSyncEntity(value string) (SyncEntity, error) {
	for _, candidate := range SyncEntities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync entity %q", value)
}
