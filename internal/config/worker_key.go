package config

type WorkerKeyStruct struct {
	PersistPaymentEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistPaymentEventsQueue: "persist_payment_events_queue",
}
