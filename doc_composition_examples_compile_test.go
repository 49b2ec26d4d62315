package stationbook_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mkalas/stationbook"
	"github.com/mkalas/stationbook/bulk"
	"github.com/mkalas/stationbook/config"
	"github.com/mkalas/stationbook/contact"
	"github.com/mkalas/stationbook/dedupe"
	"github.com/mkalas/stationbook/store"
	"github.com/mkalas/stationbook/verify"
)

// These workflows are compile-checked compositions of the public API. They
// are not executed; they exist to keep the documented usage patterns honest.

func composeImportThenDeduplicate(ctx context.Context, csvPath string) (string, error) {
	cfg, err := config.Load("")
	if err != nil {
		return "", err
	}
	book, err := stationbook.Open(ctx, cfg, nil)
	if err != nil {
		return "", err
	}
	defer book.Close()

	file, err := os.Open(csvPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	report, err := bulk.ImportCSV(ctx, book.Store, file, store.BulkCollect)
	if err != nil {
		return "", err
	}

	outcome, err := book.MergeAll(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("imported %d of %d, merged %d duplicate groups",
		report.Result.Inserted, report.Result.Attempted, outcome.Groups), nil
}

func composeReviewGroupsBeforeMerging(ctx context.Context, book *stationbook.Book) ([]contact.Contact, error) {
	groups, err := book.DuplicateGroups(ctx)
	if err != nil {
		return nil, err
	}
	all, err := book.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var merged []contact.Contact
	for _, group := range groups {
		// only act on the strongest signal, leave weaker groups for review
		if group.Kind != dedupe.KindEmail {
			continue
		}
		members := group.Members(all)
		primary := members[0]
		others := make([]string, 0, len(members)-1)
		for _, member := range members[1:] {
			others = append(others, member.ID)
		}
		result, err := book.MergeGroup(ctx, primary.ID, others)
		if err != nil {
			return merged, err
		}
		merged = append(merged, result)
	}
	return merged, nil
}

func composeVerifyCampaignList(ctx context.Context, book *stationbook.Book, cfg config.Config) (string, error) {
	verifier := verify.New(verify.Options{HeloDomain: cfg.VerifyHeloDomain})

	swept, err := verifier.Sweep(ctx, book.Store, 100)
	if err != nil {
		return "", err
	}
	bounced, err := verifier.SweepBounces(ctx, book.Store, verify.Mailbox{
		Address:     cfg.Mailbox.Address,
		Password:    cfg.Mailbox.Password,
		IMAPAddress: cfg.Mailbox.IMAPAddress,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("probed %d addresses (%d verified), %d bounced",
		swept.Probed, swept.Verified, bounced), nil
}

func composeBackupThenRestoreElsewhere(ctx context.Context, source, target *stationbook.Book, w io.Writer) error {
	var backup strings.Builder
	if err := bulk.ExportJSON(ctx, source.Store, &backup); err != nil {
		return err
	}
	report, err := bulk.ImportJSON(ctx, target.Store, strings.NewReader(backup.String()), store.BulkAbort)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "restored %d contacts\n", report.Result.Inserted)
	return target.ExportHistory(w)
}

func composeOutreachShortlist(ctx context.Context, book *stationbook.Book, genre, country string) ([]contact.Contact, error) {
	found, err := book.Store.Search(ctx, "genre:"+genre, store.Filter{
		Country:      country,
		Verification: contact.VerificationVerified,
	})
	if err != nil {
		return nil, err
	}
	shortlist := found[:0]
	for _, c := range found {
		if !c.DoNotContact {
			shortlist = append(shortlist, c)
		}
	}
	return shortlist, nil
}
