package services

// ChangeNotifier anuncia que uma coleção mudou, depois do commit. O broker
// Redis satisfaz; o hub re-executa as subscriptions da coleção.
type ChangeNotifier interface {
	PublishChange(collection, docID string)
}
