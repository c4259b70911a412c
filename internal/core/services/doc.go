// Package services contains the core orchestration logic: the title
// refresher, the analytics thread manager and its workers, the search
// index rebuilder and the trigger watcher. Services depend only on the
// driven ports, never on concrete adapters.
package services
