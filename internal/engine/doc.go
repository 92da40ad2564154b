// Package engine orchestrates the branch lifecycle: creation with
// compensations, start/stop/restart/delete, background build jobs, and
// startup recovery from the filesystem registry.
//
// All operations on one branch serialize through a per-branch lock, so
// a delete arriving mid-build waits for the build job rather than
// racing it. Cross-branch operations only meet at the port allocator's
// mutex and the VCS adapter's working-tree mutex.
package engine
