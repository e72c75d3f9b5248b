package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "col_offers",
			"name": "offers",
			"type": "base",
			"system": false,
			"fields": [
				{
					"autogeneratePattern": "[a-z0-9]{15}",
					"hidden": false,
					"id": "text_of_id",
					"max": 36,
					"min": 1,
					"name": "id",
					"pattern": "^[a-zA-Z0-9-]*$",
					"presentable": false,
					"primaryKey": true,
					"required": true,
					"system": true,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_of_buyer",
					"max": 36,
					"min": 0,
					"name": "buyer",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": true,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_of_event",
					"max": 36,
					"min": 0,
					"name": "event",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": true,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "json_of_sections",
					"maxSize": 0,
					"name": "sections",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "json"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_of_max",
					"max": 0,
					"min": 0,
					"name": "max_price",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": true,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "num_of_qty",
					"max": null,
					"min": 1,
					"name": "quantity",
					"onlyInt": true,
					"presentable": false,
					"required": true,
					"system": false,
					"type": "number"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_of_suggested",
					"max": 0,
					"min": 0,
					"name": "suggested_price",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "num_of_prob",
					"max": null,
					"min": null,
					"name": "acceptance_probability",
					"onlyInt": false,
					"presentable": false,
					"required": false,
					"system": false,
					"type": "number"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_of_holdref",
					"max": 0,
					"min": 0,
					"name": "hold_ref",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "sel_of_holdstatus",
					"maxSelect": 1,
					"name": "hold_status",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "select",
					"values": ["pending", "authorized", "captured", "cancelled"]
				},
				{
					"hidden": false,
					"id": "sel_of_status",
					"maxSelect": 1,
					"name": "status",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": ["active", "matched", "expired", "cancelled", "completed"]
				},
				{
					"hidden": false,
					"id": "date_of_expires",
					"max": "",
					"min": "",
					"name": "expires_at",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "date"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_of_matched",
					"max": 36,
					"min": 0,
					"name": "matched_listing",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "date_of_matchedat",
					"max": "",
					"min": "",
					"name": "matched_at",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "date"
				},
				{
					"hidden": false,
					"id": "auto_of_created",
					"name": "created",
					"onCreate": true,
					"onUpdate": false,
					"presentable": false,
					"system": false,
					"type": "autodate"
				},
				{
					"hidden": false,
					"id": "auto_of_updated",
					"name": "updated",
					"onCreate": true,
					"onUpdate": true,
					"presentable": false,
					"system": false,
					"type": "autodate"
				}
			],
			"indexes": [
				"CREATE INDEX idx_offers_event_status ON offers (event, status)",
				"CREATE INDEX idx_offers_buyer ON offers (buyer)",
				"CREATE INDEX idx_offers_status_expires ON offers (status, expires_at)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		return app.ImportCollectionsByMarshaledJSON([]byte(jsonData), false)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("col_offers")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
