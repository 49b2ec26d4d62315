// Package verify checks whether contact email addresses are deliverable.
//
// A Verifier probes addresses directly against their domain's mail host
// over SMTP without sending any mail, and sweeps the results back into
// the store as verification statuses. It can also scan an IMAP mailbox
// for delivery failure notices and mark the affected contacts.
package verify
