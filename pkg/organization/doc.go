// Package organization describes the organization-level configuration that feature
// operations depend on: the environment list with its inheritance rules, safe-rollout
// ramp-up defaults, and third-party integration switches.
//
// Settings are read through a Provider. MemoryProvider serves tests and embedded use,
// FileProvider loads a YAML document:
//
//	organizations:
//	  - id: org_1
//	    environments:
//	      - id: production
//	      - id: staging
//	        parent: production
//	        default_state: true
//	    ramp_up:
//	      snapshot_interval: 1h
//	      step_interval: 24h
//	      steps: [10, 25, 50, 100]
//	    integrations:
//	      experiment_sync:
//	        enabled: true
//	        url: https://example.com/hooks/experiments
//	        secret: whsec_123
//
// Authorization is modeled by the Authorizer interface; the feature service asks it
// whether a project-scoped resource is readable before returning it.
package organization
