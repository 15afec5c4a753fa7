package kernel

type Email string

func (e Email) String() string { return string(e) }
func (e Email) IsEmpty() bool  { return string(e) == "" }

type JobTitle string

type JobDescription string

// StoragePath is a namespaced object key inside the CV bucket,
// shaped as {jobID}/{timestamp}_{sanitizedFilename}.
type StoragePath string

func (p StoragePath) String() string { return string(p) }
func (p StoragePath) IsEmpty() bool  { return string(p) == "" }
