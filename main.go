// Package main is the entry point for the building-lifecycle chaincode.
// It registers the identity directory, asset registry, task workflow,
// claim workflow, and reputation contracts as a single chaincode on the
// Hyperledger Fabric network.
package main

import (
	"log"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

func main() {
	buildingChaincode, err := contractapi.NewChaincode(
		&IdentityContract{},
		&AssetRegistryContract{},
		&TaskContract{},
		&ClaimContract{},
		&ReputationContract{},
	)
	if err != nil {
		log.Panicf("Error creating building-lifecycle chaincode: %v", err)
	}

	buildingChaincode.Info.Title = "BIMChain Building Lifecycle"
	buildingChaincode.Info.Description = "Regulated Building Lifecycle Register - Identity, Registry, Tasks, Claims, Reputation"
	buildingChaincode.Info.Version = "1.0.0"

	if err := buildingChaincode.Start(); err != nil {
		log.Panicf("Error starting building-lifecycle chaincode: %v", err)
	}
}
