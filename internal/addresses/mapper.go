package addresses

import "github.com/angelmondragon/storefront-backend/pkg/db/models"

func toSuggestions(rows []models.Address) []Suggestion {
	out := make([]Suggestion, 0, len(rows))
	for _, row := range rows {
		out = append(out, Suggestion{ID: row.ID, Address: row.AddressText, Label: row.Label})
	}
	return out
}
