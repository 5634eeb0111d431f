package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&RawLog{},
		&Event{},
		&Classification{},
		&UnclassifiedEndpoint{},
		&Endpoint{},
		&Flow{},
		&DeviceIdentification{},
		&HaCluster{},
		&FirewallInventory{},
		&FirewallOverride{},
		&AppSetting{},
		&DeviceOverride{},
		&RouterMac{},
		&IngestJob{},
		&MaintenanceJob{},
	}
}
