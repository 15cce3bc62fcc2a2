// Package cache implements the read-populated disk cache that sits in front of
// the backing object store. Entries live as plain files named by object id
// under the cache root; in-flight writes go to <root>/tmp/<id> and become
// visible only through a single rename, so readers never observe a partial
// object. Extended attributes carry advisory metadata (display name, hit
// counter) and silently degrade on filesystems without xattr support.
// Enumeration and purge primitives are exposed for the external eviction job;
// the eviction policy itself lives outside this package.
package cache
