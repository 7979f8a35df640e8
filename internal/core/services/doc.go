// Package services contains the application core: the pipeline
// orchestrator, the engine registry, health checks and the artifact
// retention sweeper.
//
// Services implement the driving ports and depend only on domain types and
// driven ports - never on concrete adapters.
package services
