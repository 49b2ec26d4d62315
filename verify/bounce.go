package verify

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"

	"github.com/mkalas/stationbook/contact"
	"github.com/mkalas/stationbook/store"
)

// Mailbox identifies the IMAP account that receives delivery failure
// notices for outreach mail.
type Mailbox struct {
	// Address is the account's own email address, used to log in.
	Address string
	// Password is the account password or app password.
	Password string
	// IMAPAddress is the host:port of the IMAPS endpoint.
	IMAPAddress string
}

// bounceSenders are the local parts mail systems use for failure notices.
var bounceSenders = []string{"mailer-daemon", "postmaster"}

// SweepBounces scans the mailbox INBOX for delivery failure notices and
// marks every contact whose address appears in one as not_found. It
// returns the number of contacts updated.
func (v *Verifier) SweepBounces(ctx context.Context, facade *store.Facade, mailbox Mailbox) (int, error) {
	contacts, err := facade.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	byEmail := make(map[string]contact.Contact)
	for _, c := range contacts {
		if c.Email != "" {
			byEmail[contact.NormalizeEmail(c.Email)] = c
		}
	}
	if len(byEmail) == 0 {
		return 0, nil
	}

	bounced, err := v.collectBouncedAddresses(mailbox)
	if err != nil {
		return 0, err
	}

	updated := 0
	for address := range bounced {
		c, ok := byEmail[address]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if c.VerificationStatus == contact.VerificationNotFound {
			continue
		}
		c.VerificationStatus = contact.VerificationNotFound
		c.VerificationDetails = "delivery failure notice received"
		if _, err := facade.Update(ctx, c); err != nil {
			return updated, err
		}
		updated++
		v.log.Info().Str("id", c.ID).Str("email", c.Email).Msg("contact marked bounced")
	}
	return updated, nil
}

// collectBouncedAddresses reads every failure notice in the INBOX and
// returns the set of normalized addresses mentioned in their bodies.
func (v *Verifier) collectBouncedAddresses(mailbox Mailbox) (map[string]struct{}, error) {
	imapClient, err := v.connectIMAP(mailbox)
	if err != nil {
		return nil, err
	}
	defer imapClient.Logout()

	if _, err := imapClient.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("verify: selecting INBOX failed: %w", err)
	}

	seen := make(map[uint32]struct{})
	var uids []uint32
	for _, sender := range bounceSenders {
		criteria := imap.NewSearchCriteria()
		criteria.Header.Add("From", sender)
		found, err := imapClient.UidSearch(criteria)
		if err != nil {
			return nil, fmt.Errorf("verify: bounce search failed: %w", err)
		}
		for _, uid := range found {
			if _, dup := seen[uid]; dup {
				continue
			}
			seen[uid] = struct{}{}
			uids = append(uids, uid)
		}
	}
	if len(uids) == 0 {
		return map[string]struct{}{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids)+8)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.UidFetch(seqSet, items, messages)
	}()

	bounced := make(map[string]struct{})
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			continue
		}
		for _, address := range extractAddresses(string(raw)) {
			bounced[address] = struct{}{}
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("verify: bounce fetch failed: %w", err)
	}
	return bounced, nil
}

func (v *Verifier) connectIMAP(mailbox Mailbox) (*client.Client, error) {
	host, _, err := net.SplitHostPort(mailbox.IMAPAddress)
	if err != nil {
		host = mailbox.IMAPAddress
	}
	imapClient, err := client.DialTLS(mailbox.IMAPAddress, &tls.Config{ServerName: host})
	if err != nil {
		return nil, fmt.Errorf("verify: IMAP dial failed: %w", err)
	}

	auth := sasl.NewPlainClient("", mailbox.Address, mailbox.Password)
	if err := imapClient.Authenticate(auth); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("verify: IMAP auth failed: %w", err)
	}

	return imapClient, nil
}

// extractAddresses pulls every email-shaped token out of text.
func extractAddresses(text string) []string {
	var out []string
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ' ', '\t', '\r', '\n', '<', '>', '(', ')', '[', ']', '"', ',', ';':
			return true
		}
		return false
	}) {
		field = strings.Trim(field, ".:")
		if contact.ValidEmail(field) {
			out = append(out, contact.NormalizeEmail(field))
		}
	}
	return out
}
