package trading

import "fmt"

// ID identifies records that have no natural key, like trade events.
type ID interface {
	fmt.Stringer
}

type IDService interface {
	NewID() ID

	NewIDFromString(id string) (ID, error)
}

func IDStrings(ids ...ID) []string {
	result := make([]string, len(ids))
	for i, id := range ids {
		result[i] = id.String()
	}

	return result
}
