// Package filters provides the catalog of named frame filters offered to
// users, plus audio transforms.
//
// A Catalog is an explicit value: build one with NewCatalog and pass it to
// whatever needs to resolve filter names. Its first entry is always "normal",
// which writes frames unchanged. The remaining variants are built on
// disintegration/imaging; when a RenderContext reports libvips as available,
// libvips-backed variants are registered as well.
package filters
