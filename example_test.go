package wizards_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/wizards"
	"github.com/aretw0/wizards/internal/config"
	"github.com/aretw0/wizards/pkg/domain"
)

// ExampleNew walks the historical path of a drawer with the built-in templates.
func ExampleNew() {
	ctx := context.Background()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal(err)
	}
	engine, err := wizards.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	d, err := engine.Sessions.Open(ctx, domain.Query{Metric: "node_cpu_seconds_total"})
	if err != nil {
		log.Fatal(err)
	}

	index, err := d.ChooseHistorical(ctx)
	if err != nil {
		log.Fatal(err)
	}
	d.Wait()

	s := d.State().Interactions[index].Suggestions[1]
	fmt.Println(s.Title)
	fmt.Println(s.Query)
	// Output:
	// Per-second rate
	// rate(node_cpu_seconds_total[5m])
}
