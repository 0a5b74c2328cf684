// Package model defines audit policies: rules, severities, enforcement
// modes, thresholds and exit-code tables.
//
// Policies are assembled from layers. A Layer is a partial policy as written
// in a file: only the fields it sets take effect. Build applies a Layer on top
// of the defaults, Merge applies a child Layer on top of an already resolved
// parent, and Effective applies environment and dataset overlays, which are
// Layers too. All three follow the same rule: fields set by the upper layer
// win, exit-code and metadata entries merge per key, and rules merge by name.
//
// An AuditPolicy is read-only once built. Rules parse their condition once
// on first use and keep the tree for their lifetime.
package model
