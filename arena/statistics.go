package arena

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/vmsim/memutils"
)

// CalculateStatistics populates stats with the arena's occupancy, miniblock sizes and gap sizes
func (a *Arena) CalculateStatistics(stats *memutils.DetailedStatistics) {
	stats.Clear()
	a.directory.AddDetailedStatistics(stats)
}

// BuildStatsString renders the arena's statistics as a JSON document. When detailed is true,
// the document also lists every block and miniblock along with its permissions.
func (a *Arena) BuildStatsString(detailed bool) string {
	var stats memutils.DetailedStatistics
	a.CalculateStatistics(&stats)

	writer := jwriter.NewWriter()
	obj := writer.Object()

	total := obj.Name("Total").Object()
	total.Name("BlockCount").Int(stats.BlockCount)
	total.Name("MiniblockCount").Int(stats.MiniblockCount)
	total.Name("CapacityBytes").Int(int(stats.CapacityBytes))
	total.Name("OccupiedBytes").Int(int(stats.OccupiedBytes))
	total.Name("FreeBytes").Int(int(stats.FreeBytes()))
	total.Name("GapCount").Int(stats.GapCount)
	if stats.MiniblockCount > 0 {
		total.Name("MiniblockSizeMin").Int(int(stats.MiniblockSizeMin))
		total.Name("MiniblockSizeMax").Int(int(stats.MiniblockSizeMax))
	}
	if stats.GapCount > 0 {
		total.Name("GapSizeMin").Int(int(stats.GapSizeMin))
		total.Name("GapSizeMax").Int(int(stats.GapSizeMax))
	}
	total.End()

	if detailed {
		detailedMap := obj.Name("DetailedMap").Object()
		a.directory.BlockJsonData(&detailedMap)
		a.directory.PrintDetailedMap(&detailedMap)
		detailedMap.End()
	}

	obj.End()
	return string(writer.Bytes())
}
