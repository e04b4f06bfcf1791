/*
Package session keeps the open drawers of a process.

It generates drawer IDs, restores drawers from their snapshots after a
restart, and coordinates restore and delete across replicas with an optional
distributed lock.
*/
package session
