package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog"

	"github.com/mkalas/stationbook/contact"
	"github.com/mkalas/stationbook/store"
)

const (
	defaultHeloDomain  = "localhost"
	defaultProbeFrom   = "probe@localhost"
	defaultDialTimeout = 10 * time.Second
)

// Options tunes the verifier.
type Options struct {
	// HeloDomain is announced in the SMTP HELO. Empty means "localhost".
	HeloDomain string
	// ProbeFrom is the MAIL FROM address used for probes.
	ProbeFrom string
	// DialTimeout bounds each connection attempt.
	DialTimeout time.Duration
	// Log receives probe events. Nil disables logging.
	Log *zerolog.Logger
}

// Verifier checks contact email deliverability by asking the address's own
// mail host, and sweeps results back into the store.
type Verifier struct {
	heloDomain  string
	probeFrom   string
	dialTimeout time.Duration
	resolver    *net.Resolver
	log         zerolog.Logger
}

// New returns a configured Verifier.
func New(opts Options) *Verifier {
	v := &Verifier{
		heloDomain:  opts.HeloDomain,
		probeFrom:   opts.ProbeFrom,
		dialTimeout: opts.DialTimeout,
		resolver:    net.DefaultResolver,
		log:         zerolog.Nop(),
	}
	if v.heloDomain == "" {
		v.heloDomain = defaultHeloDomain
	}
	if v.probeFrom == "" {
		v.probeFrom = defaultProbeFrom
	}
	if v.dialTimeout <= 0 {
		v.dialTimeout = defaultDialTimeout
	}
	if opts.Log != nil {
		v.log = *opts.Log
	}
	return v
}

// Outcome is the result of probing one address.
type Outcome struct {
	Status  contact.VerificationStatus
	Details string
}

// Probe checks whether address is deliverable: resolve the domain's mail
// host (MX, falling back to the domain itself), open an SMTP session, and
// issue MAIL FROM / RCPT TO without sending data. A permanent rejection
// maps to not_found; transient and connectivity failures map to error.
func (v *Verifier) Probe(ctx context.Context, address string) Outcome {
	address = strings.TrimSpace(address)
	if !contact.ValidEmail(address) {
		return Outcome{Status: contact.VerificationNotFound, Details: "address is malformed"}
	}
	domain := address[strings.LastIndex(address, "@")+1:]

	host, err := v.mailHost(ctx, domain)
	if err != nil {
		return Outcome{Status: contact.VerificationNotFound, Details: fmt.Sprintf("no mail host for %s", domain)}
	}

	client, err := v.connect(ctx, host)
	if err != nil {
		return Outcome{Status: contact.VerificationError, Details: err.Error()}
	}
	defer client.Close()

	if err := client.Hello(v.heloDomain); err != nil {
		return Outcome{Status: contact.VerificationError, Details: fmt.Sprintf("HELO failed: %v", err)}
	}
	if err := client.Mail(v.probeFrom, nil); err != nil {
		return Outcome{Status: contact.VerificationError, Details: fmt.Sprintf("MAIL FROM failed: %v", err)}
	}
	if err := client.Rcpt(address, nil); err != nil {
		return rcptOutcome(address, err)
	}
	return Outcome{Status: contact.VerificationVerified, Details: fmt.Sprintf("accepted by %s", host)}
}

func rcptOutcome(address string, err error) Outcome {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) && smtpErr.Code >= 500 {
		return Outcome{
			Status:  contact.VerificationNotFound,
			Details: fmt.Sprintf("rejected: %s", strings.TrimSpace(smtpErr.Message)),
		}
	}
	return Outcome{Status: contact.VerificationError, Details: fmt.Sprintf("RCPT TO %q failed: %v", address, err)}
}

// mailHost returns the preferred MX host for domain, or the domain itself
// when it publishes no MX records.
func (v *Verifier) mailHost(ctx context.Context, domain string) (string, error) {
	records, err := v.resolver.LookupMX(ctx, domain)
	if err == nil && len(records) > 0 {
		best := records[0]
		for _, record := range records[1:] {
			if record.Pref < best.Pref {
				best = record
			}
		}
		return strings.TrimSuffix(best.Host, "."), nil
	}
	if _, addrErr := v.resolver.LookupHost(ctx, domain); addrErr != nil {
		return "", fmt.Errorf("verify: %s has no mail host", domain)
	}
	return domain, nil
}

func (v *Verifier) connect(ctx context.Context, host string) (*smtp.Client, error) {
	dialer := net.Dialer{Timeout: v.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, "25"))
	if err != nil {
		return nil, fmt.Errorf("verify: dialing %s failed: %w", host, err)
	}
	return smtp.NewClient(conn), nil
}

// SweepResult summarizes one verification sweep.
type SweepResult struct {
	Probed   int
	Verified int
	NotFound int
	Errors   int
}

// Sweep probes every unverified contact with an email address, writing the
// verifying state and then the outcome back through the facade. limit caps
// the number of probes per sweep when greater than zero; cancellation is
// honored between contacts.
func (v *Verifier) Sweep(ctx context.Context, facade *store.Facade, limit int) (SweepResult, error) {
	contacts, err := facade.GetAll(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	var result SweepResult
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if c.Email == "" || c.VerificationStatus != contact.VerificationUnverified {
			continue
		}
		if limit > 0 && result.Probed >= limit {
			break
		}

		c.VerificationStatus = contact.VerificationVerifying
		if _, err := facade.Update(ctx, c); err != nil {
			return result, err
		}

		outcome := v.Probe(ctx, c.Email)
		result.Probed++
		switch outcome.Status {
		case contact.VerificationVerified:
			result.Verified++
		case contact.VerificationNotFound:
			result.NotFound++
		default:
			result.Errors++
		}
		v.log.Debug().Str("id", c.ID).Str("email", c.Email).
			Str("status", string(outcome.Status)).Msg("email probed")

		c.VerificationStatus = outcome.Status
		c.VerificationDetails = outcome.Details
		if _, err := facade.Update(ctx, c); err != nil {
			return result, err
		}
	}
	return result, nil
}
