// Mapping of the GitHub public events API response onto structures the
// pipeline works with. Payload metadata is optional and frequently absent.
package githubapi

type EventRepo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type PayloadRepository struct {
	Language        *string `json:"language"`
	Description     *string `json:"description"`
	StargazersCount int64   `json:"stargazers_count"`
}

type EventPayload struct {
	Repository *PayloadRepository `json:"repository,omitempty"`
}

type RawEvent struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Repo      EventRepo    `json:"repo"`
	Payload   EventPayload `json:"payload,omitempty"`
	CreatedAt string       `json:"created_at,omitempty"`
}
