// Package cli implements the pubportal command line.
//
// Commands:
//
//	pubportal serve            run the API and the health/metrics listener
//	pubportal migrate          apply database migrations (--list to print them)
//	pubportal bootstrap-admin  create the first super admin
//	pubportal hash-password    print the argon2id hash of a password
//	pubportal scope            validate and print the college hierarchy
//
// Every command except hash-password reads portal.yaml (or --config) and
// PORTAL_* environment overrides through pkg/config.
package cli
