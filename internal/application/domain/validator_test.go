package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
)

func TestCommitment(t *testing.T) {
	a := EpochValidators{Index: 7, MaxNonSigners: 33, Validators: []hexutil.Bytes{{0x01}, {0x02}}}
	b := EpochValidators{Index: 7, MaxNonSigners: 33, Validators: []hexutil.Bytes{{0x01}, {0x02}}}
	assert.Equal(t, a.Commitment(), b.Commitment())

	b.Validators = []hexutil.Bytes{{0x02}, {0x01}}
	assert.NotEqual(t, a.Commitment(), b.Commitment())

	c := a
	c.Index = 8
	assert.NotEqual(t, a.Commitment(), c.Commitment())
}

func TestNewProofBundleCopiesInputs(t *testing.T) {
	resp := ProofResponse{Proof: []byte{0x01, 0x02}, FirstEpoch: 393, LastEpoch: 536}
	vk := []byte{0xaa}

	bundle := NewProofBundle(resp, vk)
	resp.Proof[0] = 0xff
	vk[0] = 0xff

	assert.Equal(t, [][]byte{{0x01, 0x02}}, bundle.Proofs)
	assert.Equal(t, [2]Epoch{393, 536}, bundle.Epochs)
	assert.Equal(t, []byte{0xaa}, bundle.VerifyingKey)
}
