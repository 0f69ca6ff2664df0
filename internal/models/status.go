package models

type StudentStatus string

const (
	StudentUnregistered StudentStatus = "UNREGISTERED"
	StudentPending      StudentStatus = "PENDING"
	StudentRegistered   StudentStatus = "REGISTERED"
	StudentDeregistered StudentStatus = "DEREGISTERED"
)

type ProjectStatus string

const (
	ProjectAvailable   ProjectStatus = "AVAILABLE"
	ProjectReserved    ProjectStatus = "RESERVED"
	ProjectUnavailable ProjectStatus = "UNAVAILABLE"
	ProjectAllocated   ProjectStatus = "ALLOCATED"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestDenied   RequestStatus = "DENIED"
)

var studentTransitions = map[StudentStatus][]StudentStatus{
	StudentUnregistered: {StudentPending},
	StudentDeregistered: {StudentPending},
	StudentPending:      {StudentRegistered, StudentUnregistered},
	StudentRegistered:   {StudentDeregistered},
}

// A RESERVED project may fall back to UNAVAILABLE when its supervisor filled
// up while the reservation was pending.
var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectAvailable:   {ProjectReserved, ProjectUnavailable, ProjectAllocated},
	ProjectUnavailable: {ProjectAvailable},
	ProjectReserved:    {ProjectAllocated, ProjectAvailable, ProjectUnavailable},
	ProjectAllocated:   {ProjectAvailable, ProjectUnavailable},
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending: {RequestApproved, RequestDenied},
}

func (s StudentStatus) CanTransitionTo(next StudentStatus) bool {
	return contains(studentTransitions[s], next)
}

func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	return contains(projectTransitions[s], next)
}

func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return contains(requestTransitions[s], next)
}

// Holding reports whether the student is bound to a project.
func (s StudentStatus) Holding() bool {
	return s == StudentPending || s == StudentRegistered
}

// Held reports whether an active student relationship pins the project status.
func (s ProjectStatus) Held() bool {
	return s == ProjectReserved || s == ProjectAllocated
}

func (s RequestStatus) Resolved() bool {
	return s == RequestApproved || s == RequestDenied
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
