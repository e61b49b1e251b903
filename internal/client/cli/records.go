package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ilyakarpov/paycodes/internal/client/models"
	"github.com/ilyakarpov/paycodes/internal/client/services"
)

// List prints the current owner's records ordered by position.
func (a *App) List(ctx context.Context) error {
	recs, err := a.records.List(ctx, a.ownerID())
	if err != nil {
		fmt.Fprintln(a.out, "List failed:", err)
		return err
	}
	a.printRecords(recs)
	return nil
}

// Add prompts for the record fields and stores a new payment code.
func (a *App) Add(ctx context.Context) error {
	code, err := GetSimpleText(a.reader, "Code", a.out)
	if err != nil {
		return err
	}
	mt, err := GetChoice(a.reader, "Type", []string{"qr", "barcode"}, a.out)
	if err != nil {
		return err
	}
	payload, err := GetSimpleText(a.reader, "Code payload", a.out)
	if err != nil {
		return err
	}
	category, err := GetChoice(a.reader, "Category", []string{"bank", "store", "ewallet"}, a.out)
	if err != nil {
		return err
	}
	accName, err := GetSimpleText(a.reader, "Account name (optional)", a.out)
	if err != nil {
		return err
	}
	accNumber, err := GetSimpleText(a.reader, "Account number (optional)", a.out)
	if err != nil {
		return err
	}

	rec, err := a.records.Add(ctx, a.ownerID(), services.RecordInput{
		Code:          code,
		MetadataType:  models.MetadataType(mt),
		Metadata:      payload,
		AccountName:   accName,
		AccountNumber: accNumber,
		Category:      models.Category(category),
	})
	if err != nil {
		fmt.Fprintln(a.out, "Add failed:", err)
		return err
	}
	fmt.Fprintf(a.out, "Added %s at position %d\n", rec.ID, rec.OrderIndex)
	return nil
}

// Delete removes a record by id.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: delete <id>")
		return nil
	}
	if err := a.records.Delete(ctx, a.ownerID(), args[0]); err != nil {
		fmt.Fprintln(a.out, "Delete failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

// Reorder applies a new ordering given as a list of record ids.
func (a *App) Reorder(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: reorder <id> [id...]")
		return nil
	}
	if err := a.records.Reorder(ctx, a.ownerID(), args); err != nil {
		fmt.Fprintln(a.out, "Reorder failed:", err)
		return err
	}
	return a.List(ctx)
}

// Search finds records matching the query text or a known provider name.
func (a *App) Search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: search <text>")
		return nil
	}
	recs, err := a.records.Search(ctx, a.ownerID(), strings.Join(args, " "))
	if err != nil {
		fmt.Fprintln(a.out, "Search failed:", err)
		return err
	}
	a.printRecords(recs)
	return nil
}

// Filter lists records in one category, or every record for "all".
func (a *App) Filter(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: filter <bank|store|ewallet|all>")
		return nil
	}
	recs, err := a.records.FilterByCategory(ctx, a.ownerID(), models.Category(args[0]))
	if err != nil {
		fmt.Fprintln(a.out, "Filter failed:", err)
		return err
	}
	a.printRecords(recs)
	return nil
}

// Sync runs a full push/pull reconciliation right now.
func (a *App) Sync(ctx context.Context) error {
	if err := a.sessions.SyncNow(ctx); err != nil {
		fmt.Fprintln(a.out, "Sync failed:", err)
		return err
	}
	sess := a.sessions.Session()
	if sess.Sync.LastSyncedAt != nil {
		fmt.Fprintln(a.out, "Synced at", sess.Sync.LastSyncedAt.Format("15:04:05"))
	} else {
		fmt.Fprintln(a.out, "Nothing to sync.")
	}
	return nil
}

func (a *App) printRecords(recs []models.PaymentRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No records.")
		return
	}
	w := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tCODE\tTYPE\tCATEGORY\tACCOUNT\tSYNCED")
	for _, r := range recs {
		synced := "yes"
		if !r.IsSynced {
			synced = "no"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.OrderIndex, r.ID, r.Code, r.MetadataType, r.Category, r.AccountName, synced)
	}
	w.Flush()
}
