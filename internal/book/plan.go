package book

// SpreadTask is one unit of download work, derived deterministically
// from the job and never mutated.
type SpreadTask struct {
	Index     int
	FirstPage int // zero-based offset of the spread's first page
	Filename  string
}

// Plan converts a page count into the ordered spread task list. A
// positive limit clamps the page count before planning.
func Plan(totalPages, pagesPerSpread, limit int) []SpreadTask {
	if totalPages <= 0 || pagesPerSpread <= 0 {
		return nil
	}
	if limit > 0 && limit < totalPages {
		totalPages = limit
	}

	count := (totalPages + pagesPerSpread - 1) / pagesPerSpread
	tasks := make([]SpreadTask, count)
	for i := range tasks {
		tasks[i] = SpreadTask{
			Index:     i,
			FirstPage: i * pagesPerSpread,
			Filename:  SpreadFilename(i),
		}
	}
	return tasks
}
