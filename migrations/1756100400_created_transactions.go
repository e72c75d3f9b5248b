package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "col_transactions",
			"name": "transactions",
			"type": "base",
			"system": false,
			"fields": [
				{
					"autogeneratePattern": "[a-z0-9]{15}",
					"hidden": false,
					"id": "text_tx_id",
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
					"id": "text_tx_buyer",
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
					"id": "text_tx_seller",
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
					"id": "text_tx_offer",
					"max": 36,
					"min": 0,
					"name": "offer",
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
					"id": "text_tx_listing",
					"max": 36,
					"min": 0,
					"name": "listing",
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
					"id": "text_tx_event",
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
					"id": "num_tx_qty",
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
					"id": "text_tx_section",
					"max": 0,
					"min": 0,
					"name": "section",
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
					"id": "text_tx_row",
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
					"id": "json_tx_seats",
					"maxSize": 0,
					"name": "seats",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "json"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_tx_sale",
					"max": 0,
					"min": 0,
					"name": "sale_price",
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
					"id": "text_tx_fee",
					"max": 0,
					"min": 0,
					"name": "seller_fee",
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
					"id": "text_tx_payout",
					"max": 0,
					"min": 0,
					"name": "seller_payout",
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
					"id": "text_tx_capref",
					"max": 0,
					"min": 0,
					"name": "capture_ref",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "sel_tx_payment",
					"maxSelect": 1,
					"name": "payment_status",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": ["pending", "captured", "refunded"]
				},
				{
					"hidden": false,
					"id": "sel_tx_payout",
					"maxSelect": 1,
					"name": "payout_status",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": ["pending", "scheduled", "processing", "completed", "failed"]
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_tx_payoutref",
					"max": 0,
					"min": 0,
					"name": "payout_ref",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "date_tx_paidout",
					"max": "",
					"min": "",
					"name": "paid_out_at",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "date"
				},
				{
					"hidden": false,
					"id": "sel_tx_delivery",
					"maxSelect": 1,
					"name": "delivery_status",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": ["pending", "transferred", "confirmed", "disputed", "failed"]
				},
				{
					"hidden": false,
					"id": "date_tx_transferred",
					"max": "",
					"min": "",
					"name": "transferred_at",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "date"
				},
				{
					"hidden": false,
					"id": "date_tx_confirmed",
					"max": "",
					"min": "",
					"name": "confirmed_at",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "date"
				},
				{
					"hidden": false,
					"id": "sel_tx_escrow",
					"maxSelect": 1,
					"name": "escrow_status",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": ["held", "released", "refunded"]
				},
				{
					"hidden": false,
					"id": "bool_tx_dispute",
					"name": "has_dispute",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "bool"
				},
				{
					"hidden": false,
					"id": "sel_tx_reason",
					"maxSelect": 1,
					"name": "dispute_reason",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "select",
					"values": ["tickets_not_received", "invalid_tickets", "wrong_section", "wrong_quantity", "event_cancelled", "other"]
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_tx_resolution",
					"max": 0,
					"min": 0,
					"name": "dispute_resolution",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "date_tx_disputed",
					"max": "",
					"min": "",
					"name": "disputed_at",
					"presentable": false,
					"required": false,
					"system": false,
					"type": "date"
				},
				{
					"hidden": false,
					"id": "auto_tx_created",
					"name": "created",
					"onCreate": true,
					"onUpdate": false,
					"presentable": false,
					"system": false,
					"type": "autodate"
				},
				{
					"hidden": false,
					"id": "auto_tx_updated",
					"name": "updated",
					"onCreate": true,
					"onUpdate": true,
					"presentable": false,
					"system": false,
					"type": "autodate"
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_transactions_offer ON transactions (offer)",
				"CREATE INDEX idx_transactions_buyer ON transactions (buyer)",
				"CREATE INDEX idx_transactions_seller ON transactions (seller)",
				"CREATE INDEX idx_transactions_event_payment ON transactions (event, payment_status)",
				"CREATE INDEX idx_transactions_escrow ON transactions (escrow_status)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		return app.ImportCollectionsByMarshaledJSON([]byte(jsonData), false)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("col_transactions")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
