/*
Package domain contains the core models and the pure transition function of
the wizards drawer.

It defines the interaction history of an AI query-assist session, the
suggestions surfaced to the user and the discrete actions that advance that
history. This package is kept pure and free of I/O: side effects such as
suggestion fetches or preference writes are owned by the drawer package and
re-enter the state machine as ordinary actions.

# Key Entities

  - State: the drawer snapshot (starting message flags and the ordered interaction list).
  - Interaction: one turn of the dialogue, addressed by its creation-order index.
  - Suggestion: a candidate query with a lazily fetched explanation.
  - Action: a discrete transition request applied by Reduce.
*/
package domain
