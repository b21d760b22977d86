/*
Anchord is a proof-of-distance mining node written in Go.

It follows the block headers of a set of external chains, builds work sets
referencing their latest records and mines candidates whose nonce digests lie
far enough from every referenced record. Accepted candidates form a
multiverse of competing chains, the heaviest of which is canonical.

The default options are sane for most users. This means anchord will work 'out
of the box' for most users. However, there are also a wide variety of flags
that can be used to control it.

Usage:

	anchord [OPTIONS]

For an up-to-date help message:

	anchord --help
*/
package main
