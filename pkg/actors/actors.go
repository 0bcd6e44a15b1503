package actors

import (
	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/events"
	"github.com/gracevcs/grace-server/pkg/readmodel"
	"github.com/gracevcs/grace-server/pkg/storage"
	"github.com/gracevcs/grace-server/pkg/timers"
	"github.com/gracevcs/grace-server/pkg/types"
)

// Actor kinds registered with the host.
const (
	KindOwner            = "Owner"
	KindOrganization     = "Organization"
	KindRepository       = "Repository"
	KindBranch           = "Branch"
	KindReference        = "Reference"
	KindDirectoryVersion = "DirectoryVersion"
	KindRepositoryName   = "RepositoryName"
	KindOwnerName        = "OwnerName"
	KindOrganizationName = "OrganizationName"
	KindBranchName       = "BranchName"
)

// Deps bundles the platform services every entity actor uses. It is
// passed explicitly; actors hold no process-wide mutable state.
type Deps struct {
	Store     storage.Store
	Broker    *events.Broker
	Host      *actorhost.Host
	Reminders *timers.ReminderService
	Index     *readmodel.Index

	// DefaultRetention supplies LogicalDeleteDays for entities that
	// have no repository above them (owners, organizations).
	DefaultRetention types.RetentionPolicy
}

// Register binds every entity actor kind to the host.
func Register(host *actorhost.Host, deps *Deps) {
	host.RegisterKind(KindOwner, NewOwnerActorFactory(deps))
	host.RegisterKind(KindOrganization, NewOrganizationActorFactory(deps))
	host.RegisterKind(KindRepository, NewRepositoryActorFactory(deps))
	host.RegisterKind(KindBranch, NewBranchActorFactory(deps))
	host.RegisterKind(KindReference, NewReferenceActorFactory(deps))
	host.RegisterKind(KindDirectoryVersion, NewDirectoryVersionActorFactory(deps))
	host.RegisterKind(KindRepositoryName, NewNameIndexActorFactory(KindRepositoryName, deps))
	host.RegisterKind(KindOwnerName, NewNameIndexActorFactory(KindOwnerName, deps))
	host.RegisterKind(KindOrganizationName, NewNameIndexActorFactory(KindOrganizationName, deps))
	host.RegisterKind(KindBranchName, NewNameIndexActorFactory(KindBranchName, deps))
}
