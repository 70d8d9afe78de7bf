package pinning

import (
	"github.com/jbctechsolutions/streamchat/internal/application/ports"
	domainErrors "github.com/jbctechsolutions/streamchat/internal/domain/errors"
	"github.com/jbctechsolutions/streamchat/internal/infrastructure/logging"
)

// Validator trusts a presented chain when any certificate in it, leaf or
// intermediate or root, is in the pinned set.
type Validator struct {
	set    *PinnedSet
	logger *logging.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used to report rejected chains at debug level.
func WithLogger(logger *logging.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator creates a validator over set. It fails with
// ErrNoPinnedCertificates when set is empty, since such a validator would
// reject every server.
func NewValidator(set *PinnedSet, opts ...Option) (*Validator, error) {
	if set.Len() == 0 {
		return nil, domainErrors.NewError(domainErrors.CodeConfiguration,
			"cannot build trust validator", domainErrors.ErrNoPinnedCertificates)
	}

	v := &Validator{set: set, logger: logging.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Evaluate decides trust for the raw DER certificates of a handshake,
// including the root of the verified chain when the transport supplies it.
// Order and duplicates in rawChain do not matter.
func (v *Validator) Evaluate(rawChain [][]byte) ports.TrustDecision {
	for _, der := range rawChain {
		if fp, ok := v.set.Match(der); ok {
			return ports.TrustDecision{Trusted: true, Identity: fp}
		}
	}

	leaf := ""
	if len(rawChain) > 0 {
		leaf = Fingerprint(rawChain[0])
	}
	v.logger.Debug("no pinned certificate in chain",
		"chain_length", len(rawChain),
		"leaf_fingerprint", leaf,
	)
	return ports.TrustDecision{}
}

// Hook returns Evaluate as a ports.TrustHook.
func (v *Validator) Hook() ports.TrustHook {
	return v.Evaluate
}
