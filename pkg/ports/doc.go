/*
Package ports defines the driven ports (interfaces) of the wizards drawer.

These interfaces decouple the reducer and the drawer from external
implementations, so the same drawer can run against in-memory fakes, files,
Redis, SQLite or a remote LLM.

# Key Interfaces

  - SuggestionService: produces suggestions and explanations (opaque AI/template backend).
  - PreferenceStore: persists boolean user preferences such as SKIP_STARTING_MESSAGE.
  - SnapshotStore: persists drawer snapshots so sessions survive restarts.
  - TemplateSource: supplies the historical query templates.
  - DistributedLocker: coordinates snapshot access across replicas.
*/
package ports
