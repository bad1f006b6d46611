package cmd

import (
	"path/filepath"

	"github.com/drovertools/drover/internal/config"
	"github.com/drovertools/drover/internal/constants"
	"github.com/drovertools/drover/internal/mailbox"
	"github.com/drovertools/drover/internal/status"
	"github.com/drovertools/drover/internal/workspace"
)

// yard bundles the component graph a CLI command needs. Commands build
// it once from the current directory and pass it by reference; nothing
// here is global.
type yard struct {
	root   string
	cfg    *config.Config
	store  *mailbox.FileStore
	seq    *mailbox.SequenceTracker
	track  *status.Tracker
	router *mailbox.Router
}

// openYard locates the yard from the working directory and wires the
// mailbox components against it.
func openYard() (*yard, error) {
	root, err := workspace.FindFromCwdOrError()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	mailboxDir := filepath.Join(root, constants.DirMailbox)
	store := mailbox.NewFileStore(mailboxDir, nil)
	seq := mailbox.NewSequenceTracker(mailboxDir, nil)
	track := status.NewTracker(filepath.Join(root, constants.DirStatus), nil)
	router := mailbox.NewRouter(store, seq, mailbox.RouterOptions{
		Roster:         func() []string { return cfg.Agents },
		Status:         track,
		MaxMessageSize: cfg.MaxMessageSize,
	})

	return &yard{
		root:   root,
		cfg:    cfg,
		store:  store,
		seq:    seq,
		track:  track,
		router: router,
	}, nil
}

func (y *yard) recoveryDir() string {
	return filepath.Join(y.root, constants.DirRecovery)
}
