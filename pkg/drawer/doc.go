/*
Package drawer runs one query-assist drawer.

A Drawer owns a domain.State and serializes every change through Dispatch:
user intents (choose a flow, type a prompt, submit, show everything) and the
completions of asynchronous fetches all become domain actions applied by
domain.Reduce under a single lock.

Fetches run in their own goroutines. Each one carries a ticket, the index and
generation of the interaction it was issued for. Replacing the interaction
cancels the fetch, and a completion whose ticket no longer matches is dropped
as a stale update.

# Usage

	d, err := drawer.Open(ctx, "drawer-1", domain.Query{Metric: "up"}, service,
		drawer.WithPreferences(prefs),
		drawer.WithTemplates(catalog),
	)
	if err != nil {
		return err
	}
	defer d.Close()

	idx, err := d.ChooseHistorical(ctx)
	...
	d.Wait()
	fmt.Println(d.State().Interactions[idx].Suggestions)
*/
package drawer
