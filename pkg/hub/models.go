package hub

// Subscription é o descritor declarativo que o cliente envia: qual coleção
// observar e com que recorte. O servidor decide o que a query devolve e
// reaplica o recorte a cada mudança; o cliente nunca descreve SQL.
type Subscription struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection"`
	Filter     map[string]string `json:"filter,omitempty"`
	OrderBy    string            `json:"orderBy,omitempty"`
	Desc       bool              `json:"desc,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// Viewer é a identidade autenticada da conexão. As queries usam isso para
// restringir o resultado ao que o usuário pode ver.
type Viewer struct {
	UserID string
	Role   string
}

// SubscriptionData é o payload empurrado ao cliente: o resultado COMPLETO
// da query, nunca um diff. Cliente substitui o estado local inteiro.
type SubscriptionData struct {
	ID    string      `json:"id"`
	Items interface{} `json:"items"`
}
