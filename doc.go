/*
Package wizards is the query-assist drawer behind a metrics query editor.

A drawer walks a user from a metric to a working query along two paths: an
AI path where a free-text prompt is turned into suggested queries, and a
historical path that lists query templates expanded for the metric. Every
suggestion can be explained on demand.

# Architecture

The drawer state is changed only by a pure reducer (pkg/domain). A Drawer
(pkg/drawer) serializes dispatches, runs the suggestion and explanation
requests in the background and discards results that arrive for an
interaction which has since been replaced. Snapshots, preferences and
templates live behind the interfaces of pkg/ports so the same drawer runs on
memory, files, Redis or SQLite.

# Usage

Build an Engine from a configuration and open drawers through its session
manager:

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal(err)
	}
	engine, err := wizards.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	d, err := engine.Sessions.Open(ctx, domain.Query{Metric: "http_requests_total"})
	if err != nil {
		log.Fatal(err)
	}
	index, _ := d.ChooseHistorical(ctx)
	d.Wait()
	fmt.Println(d.State().Interactions[index].Suggestions)

The HTTP (pkg/adapters/http) and MCP (pkg/adapters/mcp) adapters and the
wizards command expose the same manager to other processes.
*/
package wizards
