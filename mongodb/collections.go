package mongodb

const (
	UsersCollection      = "oauth_users"
	ClientsCollection    = "oauth_clients"
	CodesCollection      = "oauth_auth_codes"
	TokensCollection     = "oauth_tokens"
	IdentitiesCollection = "oauth_federated_identities"
)
