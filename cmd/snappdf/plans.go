package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"snappdf/internal/plans"
	"snappdf/internal/session"
)

// prices are stored as whole rupees; the gateway works in paise.
var pricePrinter = message.NewPrinter(language.English)

func formatPrice(price int) string {
	if price == 0 {
		return "free"
	}
	return pricePrinter.Sprintf("₹%d", price)
}

func (a *app) cmdPlans(ctx context.Context) error {
	list, err := a.plans.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tCREDITS\tNOTE")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, formatPrice(p.Price), p.Credits, p.Note)
	}
	return tw.Flush()
}

// cmdUpgrade walks the checkout flow: open an order, collect the gateway
// receipt, verify. Against a devserver the signature "test" completes the
// purchase without a real gateway.
func (a *app) cmdUpgrade(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upgrade", flag.ExitOnError)
	planID := fs.String("plan", "", "plan id to purchase (see: snappdf plans)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.requireCapability(ctx, session.CapabilityAuthenticated); err != nil {
		return err
	}
	if *planID == "" {
		return fmt.Errorf("-plan is required")
	}

	order, err := a.plans.Checkout(ctx, *planID)
	if err != nil {
		return err
	}
	fmt.Printf("order %s opened for %s\n", order.ID, pricePrinter.Sprintf("₹%d", order.Amount/100))
	fmt.Println("complete the payment with your gateway, then enter the receipt below")

	reader := bufio.NewReader(os.Stdin)
	paymentID, err := promptLine(reader, "payment id: ")
	if err != nil {
		return err
	}
	signature, err := promptLine(reader, "signature: ")
	if err != nil {
		return err
	}

	msg, err := a.plans.VerifyPayment(ctx, *planID, plans.Verification{
		OrderID:   order.ID,
		PaymentID: paymentID,
		Signature: signature,
	})
	if err != nil {
		return err
	}
	fmt.Println(msg)
	if s, err := a.sessions.Get(ctx); err == nil && s != nil {
		fmt.Printf("credits: %d of %d remaining\n", s.CreditsLeft(), s.Credit)
	}
	return nil
}

// cmdPlanAdmin covers the admin-only plan mutations.
func (a *app) cmdPlanAdmin(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: snappdf plan <create|update|delete> [flags]")
	}
	if _, err := a.requireCapability(ctx, session.CapabilityAdmin); err != nil {
		return err
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("plan create", flag.ExitOnError)
		name := fs.String("name", "", "plan name")
		price := fs.Int("price", 0, "price in whole currency units")
		credits := fs.Int("credits", 0, "upload credits granted")
		note := fs.String("note", "", "marketing note")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		p, err := a.plans.Create(ctx, plans.Input{Name: *name, Price: *price, Credits: *credits, Note: *note})
		if err != nil {
			return err
		}
		fmt.Printf("created plan %q (id %s)\n", p.Name, p.ID)
		return nil

	case "update":
		fs := flag.NewFlagSet("plan update", flag.ExitOnError)
		id := fs.String("id", "", "plan id")
		name := fs.String("name", "", "plan name")
		price := fs.Int("price", 0, "price in whole currency units")
		credits := fs.Int("credits", 0, "upload credits granted")
		note := fs.String("note", "", "marketing note")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("-id is required")
		}
		// Unedited fields keep the plan's current values; only flags the
		// admin actually passed override them.
		list, err := a.plans.List(ctx)
		if err != nil {
			return err
		}
		var in *plans.Input
		for _, p := range list {
			if p.ID == *id {
				in = &plans.Input{Name: p.Name, Price: p.Price, Credits: p.Credits, Note: p.Note}
				break
			}
		}
		if in == nil {
			return fmt.Errorf("no plan with id %s", *id)
		}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				in.Name = *name
			case "price":
				in.Price = *price
			case "credits":
				in.Credits = *credits
			case "note":
				in.Note = *note
			}
		})
		p, err := a.plans.Update(ctx, *id, *in)
		if err != nil {
			return err
		}
		fmt.Printf("updated plan %q\n", p.Name)
		return nil

	case "delete":
		fs := flag.NewFlagSet("plan delete", flag.ExitOnError)
		id := fs.String("id", "", "plan id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("-id is required")
		}
		if err := a.plans.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Println("deleted plan", *id)
		return nil
	}
	return fmt.Errorf("unknown plan subcommand %q", args[0])
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
