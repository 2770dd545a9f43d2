package types

const (
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitConnectionClosed  = "rabbitmq_connection_closed"
	ActionRabbitConnectionClosing = "rabbitmq_connection_closing"

	ActionDatabaseTransactionFailed = "database_transaction_failed"

	ActionDispatchStarted    = "dispatch_started"
	ActionDispatchWiden      = "dispatch_widen_all_classes"
	ActionDispatchAutoCancel = "dispatch_auto_cancel"
	ActionOfferSent          = "trip_offer_sent"
	ActionOfferAccepted      = "trip_offer_accepted"
	ActionOfferDeclined      = "trip_offer_declined"
	ActionOfferTimedOut      = "trip_offer_timeout"
)
