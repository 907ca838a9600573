package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
)

// entityPrefixes maps entity types to their expected ID prefixes
var entityPrefixes = map[string]string{
	"request":    "REQ",
	"engagement": "ENG",
}

var shortID = regexp.MustCompile(`^\d+$`)

// validateEntityID checks if an ID has the correct prefix format.
// Returns an error with helpful message if the ID appears to be a short ID.
func validateEntityID(id, entityType string) error {
	if id == "" {
		return nil
	}

	prefix, ok := entityPrefixes[entityType]
	if !ok {
		return nil
	}

	expected := prefix + "-"
	if strings.HasPrefix(id, expected) {
		return nil
	}

	if shortID.MatchString(id) {
		return fmt.Errorf("invalid %s ID '%s'. Use full ID format: %s-%s", entityType, id, prefix, id)
	}

	if strings.HasPrefix(strings.ToUpper(id), expected) {
		return fmt.Errorf("invalid %s ID '%s'. IDs are case-sensitive, use: %s", entityType, id, strings.ToUpper(id))
	}

	return fmt.Errorf("invalid %s ID '%s'. Expected format: %s-xxx", entityType, id, prefix)
}

// entityArgs wraps cobra.ExactArgs(n) and checks the first argument is an
// ID of entityType.
func entityArgs(n int, entityType string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return err
		}
		return validateEntityID(args[0], entityType)
	}
}
