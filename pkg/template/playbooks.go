package template

// Playbooks shipped in the configuration template set. Each covers one
// atomic responsibility so failures attribute to a single step.
const (
	PlaybookInstallDocker  = "install-docker.yml"
	PlaybookInstallCompose = "install-compose.yml"
	PlaybookDeployStack    = "deploy-stack.yml"
	PlaybookStartServices  = "start-services.yml"
	PlaybookVerifyServices = "verify-services.yml"
)
