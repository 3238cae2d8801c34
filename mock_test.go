package main

import (
	"crypto/x509"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/stretchr/testify/require"
)

// Test principals shared across the suite.
const (
	authorityID = "x509::CN=regulator::OU=authority"
	builderID   = "x509::CN=acme-construction"
	ownerID     = "x509::CN=building-owner-1"
	managerID   = "x509::CN=facility-manager-1"
	teamID      = "x509::CN=maintenance-team-1"
	insurerID   = "x509::CN=insurance-co-1"
	strangerID  = "x509::CN=unregistered"
)

const testBuildingID = "bldg-0001"

// emittedEvent is one SetEvent call recorded by the fake stub.
type emittedEvent struct {
	Name    string
	Payload []byte
}

// fakeStub is an in-memory ChaincodeStubInterface backed by a map. Only
// the methods the contracts use are implemented; anything else panics
// through the embedded nil interface, which is what we want in tests.
type fakeStub struct {
	shim.ChaincodeStubInterface
	state  map[string][]byte
	events []emittedEvent
	txSeq  int
}

func newFakeStub() *fakeStub {
	return &fakeStub{state: make(map[string][]byte)}
}

func (s *fakeStub) GetState(key string) ([]byte, error) {
	return s.state[key], nil
}

func (s *fakeStub) PutState(key string, value []byte) error {
	s.state[key] = value
	return nil
}

func (s *fakeStub) DelState(key string) error {
	delete(s.state, key)
	return nil
}

// CreateCompositeKey mirrors the shim's key layout: a U+0000 namespace
// prefix, then the object type and each attribute, each terminated by
// U+0000 so prefix matching works for partial queries.
func (s *fakeStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	ck := string(rune(0)) + objectType + string(rune(0))
	for _, attr := range attributes {
		ck += attr + string(rune(0))
	}
	return ck, nil
}

func (s *fakeStub) GetStateByPartialCompositeKey(objectType string, keys []string) (shim.StateQueryIteratorInterface, error) {
	prefix, _ := s.CreateCompositeKey(objectType, keys)
	var matching []string
	for key := range s.state {
		if strings.HasPrefix(key, prefix) {
			matching = append(matching, key)
		}
	}
	sort.Strings(matching)

	it := &fakeIterator{}
	for _, key := range matching {
		it.kvs = append(it.kvs, &queryresult.KV{Key: key, Value: s.state[key]})
	}
	return it, nil
}

func (s *fakeStub) GetTxID() string {
	s.txSeq++
	return fmt.Sprintf("tx-%08d", s.txSeq)
}

func (s *fakeStub) GetTxTimestamp() (*timestamp.Timestamp, error) {
	return &timestamp.Timestamp{Seconds: 1_700_000_000}, nil
}

func (s *fakeStub) GetChannelID() string {
	return "buildingchannel"
}

func (s *fakeStub) SetEvent(name string, payload []byte) error {
	s.events = append(s.events, emittedEvent{Name: name, Payload: payload})
	return nil
}

// lastEvent returns the most recently emitted event, or nil.
func (s *fakeStub) lastEvent() *emittedEvent {
	if len(s.events) == 0 {
		return nil
	}
	return &s.events[len(s.events)-1]
}

// fakeIterator walks a pre-built, key-ordered KV slice.
type fakeIterator struct {
	kvs []*queryresult.KV
	idx int
}

func (it *fakeIterator) HasNext() bool {
	return it.idx < len(it.kvs)
}

func (it *fakeIterator) Next() (*queryresult.KV, error) {
	kv := it.kvs[it.idx]
	it.idx++
	return kv, nil
}

func (it *fakeIterator) Close() error { return nil }

// fakeIdentity is a minimal cid.ClientIdentity whose GetID returns the
// chosen test principal.
type fakeIdentity struct {
	id string
}

func (i *fakeIdentity) GetID() (string, error)    { return i.id, nil }
func (i *fakeIdentity) GetMSPID() (string, error) { return "BIMChainMSP", nil }
func (i *fakeIdentity) GetAttributeValue(string) (string, bool, error) {
	return "", false, nil
}
func (i *fakeIdentity) AssertAttributeValue(string, string) error { return nil }
func (i *fakeIdentity) GetX509Certificate() (*x509.Certificate, error) {
	return nil, nil
}

// fakeContext pairs one shared fake stub with a per-call identity.
type fakeContext struct {
	stub     *fakeStub
	identity *fakeIdentity
}

func (c *fakeContext) GetStub() shim.ChaincodeStubInterface { return c.stub }
func (c *fakeContext) GetClientIdentity() cid.ClientIdentity {
	return c.identity
}

// testLedger is one world state shared by every contract call in a test.
// as() produces a transaction context for the given calling principal.
type testLedger struct {
	stub *fakeStub
}

func newTestLedger() *testLedger {
	return &testLedger{stub: newFakeStub()}
}

func (l *testLedger) as(principal string) contractapi.TransactionContextInterface {
	return &fakeContext{stub: l.stub, identity: &fakeIdentity{id: principal}}
}

// bootstrapDirectory designates the test authority and admits the
// standard principals into their roles.
func bootstrapDirectory(t *testing.T, l *testLedger) {
	t.Helper()
	identity := &IdentityContract{}
	require.NoError(t, identity.Bootstrap(l.as(authorityID)))
	for principal, role := range map[string]Role{
		builderID: RoleConstructionCompany,
		ownerID:   RoleBuildingOwner,
		managerID: RoleFacilityManager,
		teamID:    RoleMaintenanceTeam,
		insurerID: RoleInsuranceCompany,
	} {
		require.NoError(t, identity.AssignRole(l.as(authorityID), principal, string(role)))
	}
}

// registerBuilding registers the standard test building.
func registerBuilding(t *testing.T, l *testLedger) {
	t.Helper()
	registry := &AssetRegistryContract{}
	require.NoError(t, registry.RegisterInitial(l.as(builderID), testBuildingID, "3-storey office block", 2592000, "hash-initial", "policy-77"))
}
