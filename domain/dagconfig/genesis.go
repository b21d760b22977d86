package dagconfig

import "github.com/anchorchain/anchord/domain/consensus/model/externalapi"

// genesisHash is the hash of the root entry of the multiverse for
// the main network.
var genesisHash = externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{
	0x2c, 0xe4, 0xef, 0xa4, 0xf0, 0x19, 0x02, 0xef,
	0x9d, 0xcd, 0xe3, 0x5a, 0x53, 0x1b, 0xb8, 0xff,
	0xd9, 0x4b, 0x81, 0x4a, 0x0f, 0x75, 0x6b, 0x25,
	0x09, 0xcf, 0x0e, 0x98, 0xdc, 0x4e, 0xaf, 0x4e,
})

// testnetGenesisHash is the hash of the root entry of the multiverse for
// the testnet.
var testnetGenesisHash = externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{
	0x2e, 0x05, 0x86, 0xe8, 0x7b, 0xed, 0x2d, 0x69,
	0xe5, 0x41, 0x9c, 0x8d, 0x72, 0xe0, 0x89, 0x6c,
	0xd9, 0xdd, 0x92, 0x76, 0xbc, 0xab, 0xba, 0xad,
	0xc3, 0x75, 0x3f, 0x67, 0x60, 0x6d, 0x09, 0xfd,
})

// simnetGenesisHash is the hash of the root entry of the multiverse for
// the simnet.
var simnetGenesisHash = externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{
	0xcc, 0x78, 0x28, 0xd7, 0xc9, 0xa4, 0x20, 0x9a,
	0x90, 0xa2, 0x47, 0x04, 0x71, 0x34, 0x93, 0x6d,
	0x3b, 0x21, 0x6a, 0x93, 0xe8, 0x92, 0xc0, 0x01,
	0x80, 0x07, 0x0b, 0xc2, 0xc9, 0xbe, 0xab, 0x89,
})

// devnetGenesisHash is the hash of the root entry of the multiverse for
// the devnet.
var devnetGenesisHash = externalapi.NewDomainHashFromByteArray(&[externalapi.DomainHashSize]byte{
	0xfc, 0x8d, 0xa4, 0x01, 0x2b, 0x67, 0xa7, 0x18,
	0x5d, 0x09, 0x7c, 0x39, 0x96, 0x2a, 0x1c, 0xbb,
	0x20, 0x09, 0xeb, 0x78, 0xbf, 0x1a, 0xdf, 0x0f,
	0x07, 0x3c, 0xf1, 0xac, 0xa1, 0x23, 0xaa, 0x59,
})
