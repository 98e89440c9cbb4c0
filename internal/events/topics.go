package events

// Topic constants for domain events emitted by the platform. Store, product
// and payment-configuration mutations feed the activation evaluator.
const (
	TopicStoreCreated           = "store.created"
	TopicStoreUpdated           = "store.updated"
	TopicStoreDeleted           = "store.deleted"
	TopicStorePaymentRegistered = "store.payment_registered"
	TopicProductCreated         = "product.created"
	TopicProductUpdated         = "product.updated"
	TopicProductDeleted         = "product.deleted"
	TopicProductStockZero       = "product.stock_zero"
	TopicOrderBodyBuilt         = "checkout.order_body_built"
	TopicActivationEvaluated    = "store.activation_evaluated"
)

// ActivationTopics lists the topics that require re-evaluating a store's
// activation status.
func ActivationTopics() []string {
	return []string{
		TopicStoreUpdated,
		TopicStorePaymentRegistered,
		TopicProductCreated,
		TopicProductDeleted,
		TopicProductStockZero,
	}
}
