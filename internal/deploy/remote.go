package deploy

import (
	"github.com/NicabarNimble/go-deploymirror/internal/errors"
	"github.com/NicabarNimble/go-deploymirror/internal/urlutils"
)

// RemoteTarget is the validated deployment repository of a run.
type RemoteTarget struct {
	URL     string // https://github.com/owner/repo.git
	PushURL string // git@github.com:owner/repo.git
	Branch  string
}

// NewRemoteTarget validates rawURL and branch. Every failure is a
// configuration error.
func NewRemoteTarget(rawURL, branch string) (RemoteTarget, error) {
	if rawURL == "" {
		return RemoteTarget{}, errors.Newf(errors.OpConfiguration, "no remote url configured")
	}

	u, err := urlutils.ParseHTTPSURL(rawURL)
	if err != nil {
		return RemoteTarget{}, errors.Newf(errors.OpConfiguration, "remote url %q: %w", urlutils.Redact(rawURL), err)
	}
	pushURL, err := urlutils.SSHURL(u)
	if err != nil {
		return RemoteTarget{}, errors.Newf(errors.OpConfiguration, "remote url %q: %w", urlutils.Redact(rawURL), err)
	}
	if err := urlutils.ValidateBranch(branch); err != nil {
		return RemoteTarget{}, errors.Newf(errors.OpConfiguration, "branch %q: %w", branch, err)
	}

	return RemoteTarget{
		URL:     u.String(),
		PushURL: pushURL,
		Branch:  branch,
	}, nil
}
