package key

type Core interface {
	GenerateApiKey(username, role string) (string, error)
}
