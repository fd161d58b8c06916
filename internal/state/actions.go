package state

import (
	"os"

	"github.com/nileag/setup-go/internal/ci"
)

// statePrefix is how the runner exposes saved state to later steps
const statePrefix = "STATE_"

// ActionsStore saves state through the runner's GITHUB_STATE file. The runner
// replays it into the post step's environment as STATE_<name>.
type ActionsStore struct {
	file   string
	getenv func(string) string
}

// NewActionsStore creates a store writing to file and reading through getenv
func NewActionsStore(file string, getenv func(string) string) *ActionsStore {
	if getenv == nil {
		getenv = os.Getenv
	}

	return &ActionsStore{file: file, getenv: getenv}
}

// Save implements Store
func (s *ActionsStore) Save(name, value string) error {
	return ci.AppendFile(s.file, name, value)
}

// Get implements Store. An empty variable counts as absent.
func (s *ActionsStore) Get(name string) (string, bool, error) {
	v := s.getenv(statePrefix + name)
	return v, v != "", nil
}
