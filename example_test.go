package rewards_test

import (
	"context"
	"fmt"
	"log"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/store/memory"
)

func Example() {
	ctx := context.Background()

	engine := rewards.New(memory.New(),
		rewards.WithLogger(quietLogger()),
		rewards.WithIssuerAllowList(false),
	)
	if err := engine.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer engine.Stop()

	seller := &account.Account{Role: account.RoleSeller, Document: "52998224725", Name: "Ana"}
	shop := &account.Account{Role: account.RoleStore, Document: "11222333000181", Name: "Corner Shop"}
	for _, a := range []*account.Account{seller, shop} {
		if err := engine.CreateAccount(ctx, a); err != nil {
			log.Fatal(err)
		}
	}

	l, err := engine.RequestLink(ctx, seller.ID, shop.Document)
	if err != nil {
		log.Fatal(err)
	}

	inv, err := engine.SubmitInvoice(ctx, seller.ID, "35190411222333000181650010000000011000000019")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("receipt:", inv.Status)

	if _, err := engine.RespondToLink(ctx, l.ID, shop.ID, true); err != nil {
		log.Fatal(err)
	}
	if _, err := engine.UpdateLinkPercentage(ctx, l.ID, shop.ID, 30); err != nil {
		log.Fatal(err)
	}

	sellerBalance, _ := engine.Balance(ctx, seller.ID)
	shopBalance, _ := engine.Balance(ctx, shop.ID)
	fmt.Println("seller:", sellerBalance, "store:", shopBalance)

	// Output:
	// receipt: standby
	// seller: 30 store: 70
}
