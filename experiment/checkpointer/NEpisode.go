package checkpointer

// nEpisode implements checkpointing every N episodes
type nEpisode struct {
	interval int
	object   Saveable

	// filename returns the string filename of the file to save the
	// object in.
	//
	// If each saved state should go in a separate file with an
	// incremented number as a suffix (e.g. file1.bin, file2.bin, ...,
	// fileK.bin), use the static function FilenameEnumerator, which
	// will return a function that enumerates filenames.
	//
	// Otherwise, if each saved state should go in a separate file, but
	// the filename does not matter, use the static function FileTimer
	// to generate the required naming function. For example:
	//
	// n := NewNEpisode(10, object, FileTimer("filename", ".bin"))
	filename func() string
}

// NewNEpisode returns a checkpointer that saves its object every n
// episodes
func NewNEpisode(n int, object Saveable, filename func() string) Checkpointer {
	return &nEpisode{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the Checkpointer's tracked object if episode falls
// on the checkpointing interval
func (n *nEpisode) Checkpoint(episode int) error {
	if n.interval > 0 && episode%n.interval == 0 {
		return n.object.Save(n.filename())
	}
	return nil
}
