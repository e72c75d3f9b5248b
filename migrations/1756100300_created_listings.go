package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "col_listings",
			"name": "listings",
			"type": "base",
			"system": false,
			"fields": [
				{
					"autogeneratePattern": "[a-z0-9]{15}",
					"hidden": false,
					"id": "text_li_id",
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
					"id": "text_li_seller",
					"max": 36,
					"min": 0,
					"name": "seller",
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
					"id": "text_li_event",
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
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_li_section",
					"max": 0,
					"min": 0,
					"name": "section",
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
					"id": "text_li_row",
					"max": 0,
					"min": 0,
					"name": "row",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "json_li_seats",
					"maxSize": 0,
					"name": "seats",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "json"
				},
				{
					"hidden": false,
					"id": "num_li_qty",
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
					"id": "text_li_asking",
					"max": 0,
					"min": 0,
					"name": "asking_price",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_li_minimum",
					"max": 0,
					"min": 0,
					"name": "minimum_acceptable_price",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "bool_li_live",
					"name": "is_live",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "bool"
				},
				{
					"hidden": false,
					"id": "date_li_golive",
					"max": "",
					"min": "",
					"name": "go_live_at",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "date"
				},
				{
					"hidden": false,
					"id": "json_li_autosell",
					"maxSize": 0,
					"name": "auto_sell",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "json"
				},
				{
					"hidden": false,
					"id": "sel_li_status",
					"maxSelect": 1,
					"name": "status",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": ["draft", "active", "matched", "sold", "expired", "cancelled"]
				},
				{
					"hidden": false,
					"id": "sel_li_delivery",
					"maxSelect": 1,
					"name": "delivery_method",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": ["electronic", "physical"]
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_li_details",
					"max": 0,
					"min": 0,
					"name": "delivery_details",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "num_li_views",
					"max": null,
					"min": 0,
					"name": "view_count",
					"onlyInt": true,
					"presentable": false,
					"required": false,
					"system": false,
					"type": "number"
				},
				{
					"hidden": false,
					"id": "num_li_offers",
					"max": null,
					"min": 0,
					"name": "offer_count",
					"onlyInt": true,
					"presentable": false,
					"required": false,
					"system": false,
					"type": "number"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_li_matched",
					"max": 36,
					"min": 0,
					"name": "matched_offer",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "auto_li_created",
					"name": "created",
					"onCreate": true,
					"onUpdate": false,
					"presentable": false,
					"system": false,
					"type": "autodate"
				},
				{
					"hidden": false,
					"id": "auto_li_updated",
					"name": "updated",
					"onCreate": true,
					"onUpdate": true,
					"presentable": false,
					"system": false,
					"type": "autodate"
				}
			],
			"indexes": [
				"CREATE INDEX idx_listings_event_status ON listings (event, status, is_live)",
				"CREATE INDEX idx_listings_seller ON listings (seller)",
				"CREATE INDEX idx_listings_status_golive ON listings (status, go_live_at)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		return app.ImportCollectionsByMarshaledJSON([]byte(jsonData), false)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("col_listings")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
